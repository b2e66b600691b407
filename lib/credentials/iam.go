package credentials

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	awscredentials "github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	v4 "github.com/aws/aws-sdk-go/aws/signer/v4"
	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
)

// TokenExpiry is the validity of a generated IAM token
const TokenExpiry = 15 * time.Minute

// ServiceType is the signing name of the target service
type ServiceType string

const (
	ElastiCache ServiceType = "elasticache"
	MemoryDB    ServiceType = "memorydb"
)

// ParseServiceType converts a user supplied service name
func ParseServiceType(s string) (ServiceType, error) {
	switch strings.ToLower(s) {
	case "", string(ElastiCache):
		return ElastiCache, nil
	case string(MemoryDB):
		return MemoryDB, nil
	default:
		return "", errors.Errorf("unknown service type %q, must be elasticache or memorydb", s)
	}
}

// IAMConfig describes the cluster a token is generated for
type IAMConfig struct {
	ClusterName string
	Username    string
	Region      string
	Service     ServiceType

	// Serverless marks an ElastiCache serverless cache
	Serverless bool
}

// IAMTokenGenerator presigns ElastiCache/MemoryDB connect requests
type IAMTokenGenerator struct {
	config IAMConfig
	signer *v4.Signer
	clock  clock.Clock
}

// NewIAMTokenGenerator creates a generator. If creds is nil the default AWS
// credential chain (environment, shared config, instance role) is used.
func NewIAMTokenGenerator(config IAMConfig, creds *awscredentials.Credentials) (*IAMTokenGenerator, error) {
	if config.ClusterName == "" || config.Username == "" || config.Region == "" {
		return nil, errors.New("cluster name, username and region are required for iam authentication")
	}
	if config.Service == "" {
		config.Service = ElastiCache
	}

	if creds == nil {
		sess, err := session.NewSession(&aws.Config{Region: aws.String(config.Region)})
		if err != nil {
			return nil, errors.Wrap(err, "failed to create aws session")
		}
		creds = sess.Config.Credentials
	}

	return &IAMTokenGenerator{
		config: config,
		signer: v4.NewSigner(creds),
		clock:  clock.New(),
	}, nil
}

// GenerateToken implements TokenGenerator
func (g *IAMTokenGenerator) GenerateToken(ctx context.Context) (string, error) {
	query := url.Values{
		"Action": {"connect"},
		"User":   {g.config.Username},
	}
	if g.config.Serverless {
		query.Set("ResourceType", "ServerlessCache")
	}

	u := url.URL{
		Scheme:   "https",
		Host:     g.config.ClusterName,
		Path:     "/",
		RawQuery: query.Encode(),
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", errors.Wrap(err, "failed to build connect request")
	}

	if _, err := g.signer.Presign(req, nil, string(g.config.Service), g.config.Region, TokenExpiry, g.clock.Now()); err != nil {
		return "", errors.Wrap(err, "failed to presign connect request")
	}

	return strings.TrimPrefix(req.URL.String(), "https://"), nil
}
