package wsrouter

import "context"

type ctxKey string

const actionKey ctxKey = "action"

func AppendActionToCtx(ctx context.Context, action string) context.Context {
	return context.WithValue(ctx, actionKey, action)
}

func GetActionFromCtx(ctx context.Context) string {
	action, _ := ctx.Value(actionKey).(string)
	return action
}
