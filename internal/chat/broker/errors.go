package broker

import "errors"

var (
	// ErrLoginTaken - returns by Registry.Register when requested login belongs to another active peer.
	ErrLoginTaken = errors.New("broker.Registry: login is taken")

	// ErrAlreadyJoined - returns by Registry.Register when the peer is registered already.
	// Login of joined peer is immutable.
	ErrAlreadyJoined = errors.New("broker.Registry: peer has joined already")

	// ErrInvalidLogin - returns by Registry.Register for empty login.
	ErrInvalidLogin = errors.New("broker.Registry: invalid login")
)
