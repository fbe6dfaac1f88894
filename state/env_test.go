package state

import (
	"context"
	"log"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestEnvFromContext(t *testing.T) {
	t.Run("same env for the whole run", func(t *testing.T) {
		ctx := ContextWithEnv(context.Background())
		env := EnvFromContext(ctx)
		if env.start.IsZero() {
			t.Error("start time not set")
		}
		env.CodePage = nil
		env.Log = zap.NewNop()

		derived, cancel := context.WithCancel(ctx)
		defer cancel()
		if EnvFromContext(derived) != env {
			t.Error("derived context must carry the same environment")
		}
	})

	t.Run("panic on missing env", func(t *testing.T) {
		defer func() {
			if r := recover(); r == nil {
				t.Error("Expected panic when env not in context")
			}
		}()
		EnvFromContext(context.Background())
	})
}

func TestLocalEnv_StdLogRedirection(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	env := &LocalEnv{Log: zap.New(core)}

	env.RedirectStdLog()
	log.Print("from standard logger")
	env.RestoreStdLog()

	if logs.FilterMessage("from standard logger").Len() != 1 {
		t.Errorf("standard log not redirected, got %v", logs.All())
	}
}

func TestLocalEnv_NoLogger(t *testing.T) {
	env := &LocalEnv{}
	env.RedirectStdLog()
	if env.restoreStdLog != nil {
		t.Error("nothing to redirect to without logger")
	}
	env.RestoreStdLog()
}
