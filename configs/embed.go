// Package configs provides the embedded configuration template for
// onboardrag.
//
// The template is embedded at build time with go:embed so it ships in
// every distribution. It is written by 'onboardrag config init' and
// documents every setting with its default value.
package configs

import _ "embed"

// ConfigTemplate is the annotated configuration template.
// Created by: `onboardrag config init` at ./onboardrag.yaml.
//
//go:embed onboardrag.example.yaml
var ConfigTemplate string
