// Package service builds and maintains Kraken2 style k-mer databases: taxonomy
// sync, genome download, incremental library ingestion and index build.
//
// This package is intended for embedding kdb capabilities into other programs
// without shelling out to the CLI.
package service
