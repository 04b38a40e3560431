// Package model defines the denoising model capability consumed by the
// inference engine and the adapters that implement it: an external command
// adapter for real model backends and named builtin predictors for
// simulation and testing.
package model
