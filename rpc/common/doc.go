// Package common provides the configuration structures and the logging setup
// shared by the server, the client and the cli.
//
// Key Components:
//
//   - ServerConfig: listener type and endpoint, framing limits (initial buffer
//     size, max pending bytes, workers per connection), socket tuning, the
//     metrics endpoint and the optional IAM token settings.
//
//   - ClientConfig: endpoints, connections per endpoint, retries, response
//     buffer size and timeouts.
//
//   - Logger: a dragonboat logger.ILogger implementation printing
//     "LEVEL | name | message". Every package obtains its logger through
//     logger.GetLogger(name); InitLoggers installs the factory and applies the
//     configured level to all names in LoggerNames.
package common
