// Package txn runs multi-document writes in a MongoDB transaction when the
// deployment supports one, and sequentially when it does not (standalone
// servers used in development).
package txn

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Runner executes a unit of work inside a transaction.
type Runner struct {
	client *mongo.Client
	log    *zap.Logger
}

// New returns a Runner bound to client.
func New(client *mongo.Client, logger *zap.Logger) *Runner {
	return &Runner{client: client, log: logger}
}

// WithTransaction runs fn in a transaction. If the server rejects
// transactions, fn is run again without one; the aborted attempt has left no
// writes behind.
func (r *Runner) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	sess, err := r.client.StartSession()
	if err != nil {
		if IsNotSupported(err) {
			return fn(ctx)
		}
		return err
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	if err != nil && IsNotSupported(err) {
		r.log.Warn("transactions not supported; running without one", zap.Error(err))
		return fn(ctx)
	}
	return err
}

// Server error codes returned when transactions are unavailable.
const (
	codeIllegalOperation           = 20
	codeInvalidOptions             = 51
	codeOperationNotSupportedInTxn = 263
)

var notSupportedHints = []string{"transaction", "replica set", "session", "not supported", "illegal operation"}

// IsNotSupported reports whether err means the deployment cannot run
// transactions. It checks server codes first, then falls back to message
// text, requiring two independent hints to avoid false positives.
func IsNotSupported(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) {
		switch ce.Code {
		case codeIllegalOperation, codeInvalidOptions, codeOperationNotSupportedInTxn:
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	hits := 0
	for _, h := range notSupportedHints {
		if strings.Contains(msg, h) {
			hits++
		}
	}
	return hits >= 2
}
