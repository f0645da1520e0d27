// Package config provides configuration structures and utilities for
// pagecrawler. It defines the crawl budgets, analyzer and transport
// settings, report preferences and the per-site YAML configuration file.
package config
