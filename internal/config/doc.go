// Package config provides configuration loading and validation for the LoRa
// audio transfer tools. It handles YAML-based configuration with struct
// validation covering radio parameters, link addressing, the observation
// collector and the HTTP API.
package config
