package server

import (
	"crypto/subtle"

	"github.com/ValentinKolb/glidecore/lib/request"
	"github.com/pkg/errors"
)

// ErrWrongPass is returned for an AUTH whose credentials do not match
var ErrWrongPass = errors.New("WRONGPASS invalid username-password pair")

// TokenSource returns the currently valid auth token.
// It is implemented by credentials.Manager.
type TokenSource interface {
	Token() string
}

// AuthDispatcher answers AUTH by comparing the password with the current
// token and forwards every other command to Next.
type AuthDispatcher struct {
	Next   IDispatcher
	Tokens TokenSource

	// Username is checked when AUTH carries a username, empty accepts any
	Username string
}

func (d AuthDispatcher) Dispatch(call Call) ([][]byte, error) {
	if call.Type != request.Auth {
		return d.Next.Dispatch(call)
	}

	var user, pass []byte
	switch len(call.Args) {
	case 1:
		pass = call.Args[0]
	case 2:
		user, pass = call.Args[0], call.Args[1]
	default:
		return nil, errors.New("wrong number of arguments for 'auth' command")
	}

	if user != nil && d.Username != "" && string(user) != d.Username {
		return nil, ErrWrongPass
	}

	token := d.Tokens.Token()
	if token == "" || subtle.ConstantTimeCompare(pass, []byte(token)) != 1 {
		return nil, ErrWrongPass
	}
	return nil, nil
}
