package contextkeys

import (
	"context"

	"github.com/BatmanBruc/bat-bot-neuro/internal/quota"
	"github.com/BatmanBruc/bat-bot-neuro/types"
)

type accountKey struct{}
type requestKindKey struct{}
type callbackDataKey struct{}

func WithAccount(ctx context.Context, account *types.Account) context.Context {
	return context.WithValue(ctx, accountKey{}, account)
}

func GetAccount(ctx context.Context) (*types.Account, bool) {
	v := ctx.Value(accountKey{})
	if v == nil {
		return nil, false
	}
	return v.(*types.Account), true
}

func WithRequestKind(ctx context.Context, kind quota.RequestKind) context.Context {
	return context.WithValue(ctx, requestKindKey{}, kind)
}

func GetRequestKind(ctx context.Context) (quota.RequestKind, bool) {
	v := ctx.Value(requestKindKey{})
	if v == nil {
		return quota.KindExempt, false
	}
	return v.(quota.RequestKind), true
}

func WithCallbackData(ctx context.Context, data string) context.Context {
	return context.WithValue(ctx, callbackDataKey{}, data)
}

func GetCallbackData(ctx context.Context) (string, bool) {
	v := ctx.Value(callbackDataKey{})
	if v == nil {
		return "", false
	}
	return v.(string), true
}
