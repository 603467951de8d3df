// Package logx is a thin structured logging layer over zerolog.
//
// It exists so the rest of the codebase never imports zerolog directly
// and so the output configuration (level, console, file) can be swapped
// at runtime without re-plumbing loggers.
package logx
