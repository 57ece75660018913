package reconcile

import (
	"google.golang.org/grpc"

	"github.com/oggyb/moviematch/internal/app"
)

// Registrar ties the Reconcile service into the gRPC server
type Registrar struct {
	appCtx *app.AppContext
}

// NewRegistrar creates a new Registrar for the Reconcile service
func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{appCtx: appCtx}
}

// Register attaches the Reconcile service implementation to the gRPC server
func (r *Registrar) Register(s grpc.ServiceRegistrar) {
	RegisterReconcileServer(s, NewReconcileService(r.appCtx))
}
