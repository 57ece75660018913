package server

import "google.golang.org/grpc"

// Registrar is a common interface for all gRPC service registrars.
// It takes the registrar interface rather than *grpc.Server so services can
// be mounted on any server implementation.
type Registrar interface {
	Register(s grpc.ServiceRegistrar)
}
