// Package cli implements poolctl, the command line front end of the pool
// service. Commands are built with cobra around an App that owns the
// configuration, the key file and the gRPC client.
package cli
