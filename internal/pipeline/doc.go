// Package pipeline turns inputs into HLS packages. A file input becomes one
// package in the output directory; a directory input is discovered
// recursively and each media file becomes <output>/<stem>/. Every package
// runs pre-flight checks, plans its ladder, schedules its jobs, writes its
// manifests and publishes its result. Watch mode keeps packaging files as
// they land in a directory input.
package pipeline
