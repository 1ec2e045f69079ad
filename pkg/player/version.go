package player

// Version is the library version, set at build time via -ldflags.
var Version = "dev"
