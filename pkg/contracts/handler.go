package contracts

import (
	"context"

	"github.com/julienschmidt/httprouter"
)

type Handler interface {
	RegisterRoutes(*httprouter.Router)
}

// Worker is a background process owned by the application lifecycle.
type Worker interface {
	Start()
	Stop(ctx context.Context) error
}
