// Package config resolves ladder settings from a CUE file, a .env file and
// LADDER_* environment variables.
package config
