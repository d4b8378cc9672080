/*
Package dsl provides a Go DSL (Domain Specific Language) for programmatically constructing menuflow menus.

It allows developers to define conversation flows using a type-safe, fluent builder pattern
instead of relying on external YAML or JSON files. This is particularly useful for flows
generated at runtime, unit testing, and leveraging IDE autocompletion/type-checking.

Example usage:

	package main

	import (
		"github.com/aretw0/menuflow/pkg/dsl"
	)

	func main() {
		b := dsl.New("greeter")

		b.Add("start").
			Message("Welcome to menuflow!").
			Go("ask_name")

		b.Add("ask_name").
			Ask("What is your name?", "user_name").
			Go("end")

		b.Add("end").
			Message("Goodbye, {{ user_name }}!").
			Terminal()

		// The loader is a ports.MenuLoader
		loader, err := b.Build()
		// ... pass loader to menuflow.New(ctx, loader)
	}

The first node added is the entry node.
*/
package dsl
