// Package txn wraps MongoDB multi-document transactions.
//
// Standalone mongod instances (common in dev) do not support transactions,
// so callers should check IsNotSupported and fall back to their ordered
// non-transactional path when it reports true.
package txn

import (
	"context"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
)

// WithTransaction runs fn inside a session transaction. The callback's
// context must be used for every operation inside it.
func WithTransaction(ctx context.Context, client *mongo.Client, fn func(sc mongo.SessionContext) error) error {
	sess, err := client.StartSession()
	if err != nil {
		return err
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

// IsNotSupported reports whether err indicates the server cannot run
// multi-document transactions (standalone mongod, old wire version).
func IsNotSupported(err error) bool {
	if err == nil {
		return false
	}

	if ce, ok := err.(mongo.CommandError); ok {
		// 20 IllegalOperation, 51 errors on txn numbers outside replica
		// sets, 263 OperationNotSupportedInTransaction.
		switch ce.Code {
		case 20, 51, 263:
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "transaction") &&
		(strings.Contains(msg, "replica set") ||
			strings.Contains(msg, "session") ||
			strings.Contains(msg, "illegal operation")) {
		return true
	}
	if strings.Contains(msg, "session") && strings.Contains(msg, "not supported") {
		return true
	}
	return false
}
