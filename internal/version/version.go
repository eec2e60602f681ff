package version

// Version is the build version, overridable at link time:
//
//	go build -ldflags "-X github.com/bnema/x402-pay-cli/internal/version.Version=v0.3.0"
var Version = "dev"
