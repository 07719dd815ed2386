// Package config loads typed configuration structs from environment
// variables, with optional .env file support for local development.
//
// Each configuration type is parsed once per process and cached, so
// packages can declare their own Config struct and call Load without
// coordinating initialization order.
package config
