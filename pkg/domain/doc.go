/*
Package domain contains the core domain models of the menuflow engine.

It defines the conversation graph (Menu and its Nodes), the per-user Session and
the errors shared by the runtime and the adapters. This package is kept pure and
free of external dependencies like I/O or persistence, following Hexagonal
Architecture principles.

# Key Entities

  - Node: A step in the graph (Message, Input, Switch or HTTPRequest).
  - Case: A discriminant value mapped to a successor and variable assignments.
  - Menu: The flow definition, an arena of nodes addressed by id.
  - Session: The persisted position of a user in the Menu.
*/
package domain
