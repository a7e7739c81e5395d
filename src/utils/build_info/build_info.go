package build_info

// Set with -ldflags "-X github.com/loteraa/verifier/src/utils/build_info.Version=..."
var Version = "dev"
