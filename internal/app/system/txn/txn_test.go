package txn

import (
	"errors"
	"fmt"
	"testing"

	"go.mongodb.org/mongo-driver/mongo"
)

func TestIsNotSupported(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil error", err: nil, want: false},
		{name: "generic error", err: errors.New("some random error"), want: false},
		{name: "command error code 20", err: mongo.CommandError{Code: 20, Message: "Transaction numbers are only allowed on a replica set member"}, want: true},
		{name: "command error code 51", err: mongo.CommandError{Code: 51, Message: "Illegal operation"}, want: true},
		{name: "command error code 263", err: mongo.CommandError{Code: 263, Message: "Cannot run in a multi-document transaction"}, want: true},
		{name: "other command error code", err: mongo.CommandError{Code: 100, Message: "Some other error"}, want: false},
		{name: "wrapped command error", err: fmt.Errorf("approve join request: %w", mongo.CommandError{Code: 20}), want: true},
		{name: "transaction and replica set", err: errors.New("transaction failed because this is not a replica set member"), want: true},
		{name: "session and not supported", err: errors.New("session operations are not supported on this server"), want: true},
		{name: "single hint only", err: errors.New("transaction failed"), want: false},
		{name: "case insensitive", err: errors.New("TRANSACTION FAILED on REPLICA SET"), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNotSupported(tt.err); got != tt.want {
				t.Errorf("IsNotSupported(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
