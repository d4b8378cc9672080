/*
Package ports defines the driven ports (interfaces) for the menuflow engine.

These interfaces decouple traversal from external implementations, allowing
the engine to work with various storage backends, flow sources, and chat transports.

# Key Interfaces

  - MenuLoader: Responsible for loading the Menu (e.g., from a YAML file or memory).
  - SessionStore: Responsible for persisting sessions and variables per user.
  - Committer: Optional atomic commit of a session plus its variable changes.
  - Messenger: Delivers rendered text to a room.
  - DistributedLocker: Provides distributed locking for handling concurrent session access.
*/
package ports
