package breakdown

import "context"

type contextKey string

const sessionCtxKey contextKey = "task_session"

func SetSessionInContext(ctx context.Context, session *TaskSession) context.Context {
	return context.WithValue(ctx, sessionCtxKey, session)
}

func GetSessionFromContext(ctx context.Context) *TaskSession {
	session, _ := ctx.Value(sessionCtxKey).(*TaskSession)
	return session
}
