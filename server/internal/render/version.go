package render

// Version is the build version, stamped at build time with
// -ldflags "-X .../server/internal/render.Version=v1.2.3"
var Version = "dev"
