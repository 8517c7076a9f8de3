package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"time"

	"golang.org/x/sync/singleflight"

	"homestay/internal/app/commands"
)

// IdempotentCommand is implemented by commands that may be retried by clients
// with the same key.
type IdempotentCommand interface {
	commands.Command
	IdempotencyKey() string
	// ResultPrototype returns a pointer the stored result is decoded into.
	ResultPrototype() any
}

type IdempotencyRecord struct {
	Key        string
	Payload    []byte
	OccurredAt time.Time
}

type IdempotencyStore interface {
	Get(ctx context.Context, key string) (IdempotencyRecord, bool, error)
	Save(ctx context.Context, rec IdempotencyRecord) error
}

type ResultCodec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, out any) error
}

type JSONResultCodec struct{}

func (JSONResultCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONResultCodec) Decode(data []byte, out any) error {
	return json.Unmarshal(data, out)
}

var errMissingPrototype = errors.New("middleware: idempotent command requires result prototype")

// Idempotency replays the stored result of a successful command carrying the
// same key. Failed attempts are not stored so that a client can retry them.
// Concurrent duplicates share one execution. Records older than ttl are
// ignored; ttl <= 0 keeps them forever.
func Idempotency(store IdempotencyStore, codec ResultCodec, ttl time.Duration) CommandMiddleware {
	if store == nil {
		panic("middleware: idempotency store required")
	}
	if codec == nil {
		codec = JSONResultCodec{}
	}
	var inflight singleflight.Group
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			idCmd, ok := cmd.(IdempotentCommand)
			if !ok || idCmd.IdempotencyKey() == "" {
				return nextFn(ctx, cmd)
			}
			key := cmd.Key() + ":" + idCmd.IdempotencyKey()
			res, err, _ := inflight.Do(key, func() (any, error) {
				if res, found, err := replay(ctx, store, codec, ttl, key, idCmd); err != nil || found {
					return res, err
				}
				res, err := nextFn(ctx, cmd)
				if err != nil {
					return nil, err
				}
				return res, remember(ctx, store, codec, key, res)
			})
			return res, err
		})
	}
}

func replay(ctx context.Context, store IdempotencyStore, codec ResultCodec, ttl time.Duration, key string, cmd IdempotentCommand) (any, bool, error) {
	rec, found, err := store.Get(ctx, key)
	if err != nil || !found {
		return nil, false, err
	}
	if ttl > 0 && time.Since(rec.OccurredAt) >= ttl {
		return nil, false, nil
	}
	proto := cmd.ResultPrototype()
	if proto == nil {
		return nil, false, errMissingPrototype
	}
	if len(rec.Payload) > 0 {
		if err := codec.Decode(rec.Payload, proto); err != nil {
			return nil, false, err
		}
	}
	return dereference(proto), true, nil
}

func remember(ctx context.Context, store IdempotencyStore, codec ResultCodec, key string, result any) error {
	rec := IdempotencyRecord{Key: key, OccurredAt: time.Now().UTC()}
	if result != nil {
		payload, err := codec.Encode(result)
		if err != nil {
			return err
		}
		rec.Payload = payload
	}
	return store.Save(ctx, rec)
}

func dereference(proto any) any {
	rv := reflect.ValueOf(proto)
	if rv.Kind() == reflect.Ptr && !rv.IsNil() {
		return rv.Elem().Interface()
	}
	return proto
}
