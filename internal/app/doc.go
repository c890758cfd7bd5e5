// Package app composes the wallet bridge services into a running application.
//
// The package sits above the protocol services and is responsible for wiring,
// not business logic:
//
//	internal/app/
//	├── application.go      # Application struct, wiring, lifecycle
//	├── domain/             # Domain models (pure data structures)
//	│   ├── connect/        # Sessions, manifests, protocol error codes
//	│   ├── send/           # Transfer requests, confirmations, results
//	│   └── wallet/         # Wallets, balances, fixed-point amounts, rates
//	├── services/           # Protocol services (connect, send, recipient, ...)
//	├── storage/            # Connection store interface + memory and postgres
//	├── router/             # Bridge message routing and response dispatch
//	├── events/             # In-process session event bus
//	├── httpapi/            # Operational REST surface
//	├── system/             # Service lifecycle management
//	└── metrics/            # Prometheus registry and collectors
//
// Dependency flow:
//
//	cmd/bridged/
//	      │
//	      ▼
//	internal/app/ (composition)
//	      │
//	      ├──► internal/app/services/ (protocol logic)
//	      │           │
//	      │           └──► internal/app/sources/ (collaborator interfaces)
//	      │
//	      └──► internal/app/storage/ (persistence)
//
// External collaborators (the chain indexer, the confirmation surface, the
// wallet directory) are passed in through Collaborators; the services only
// see the interfaces declared in internal/app/sources.
package app
