// Package runtime hosts the process-level execution machinery: long-running
// modules, the engine that supervises them and the interval scheduler that
// drives cron-style work.
package runtime

import (
	"context"
	"time"

	Logger "github.com/postmux/postmux/utils/log"
)

const (
	GracefulRetryDelay = 3
)

// RunModuleWithGracefulRestart reruns a module whenever it exits with an
// error, after a short delay. A clean exit ends the loop.
func RunModuleWithGracefulRestart(ctx context.Context, module *Module) {
	for {
		err := (*module).RunModule(ctx)
		if err == nil {
			break
		}
		Logger.Log.Errorf(
			"Module %s exited with error %v, retry in %d seconds",
			(*module).Name(),
			err,
			GracefulRetryDelay)

		// Wait for a small amount of time and restart.
		time.Sleep(GracefulRetryDelay * time.Second)
	}
}

type Module interface {
	// RunModule contains the customized logic of the module. It takes in a
	// context object by which its lifecycle is managed. Return error if
	// encountered any error during execution.
	RunModule(ctx context.Context) error

	// Return name of the Module. Uniquely identifies the module instance. Note
	// that if there are multiple instances of the same module, each instance
	// should have a unique name instead of using the same name.
	Name() string

	// Shutdown releases the module's resources on engine shutdown.
	Shutdown()
}
