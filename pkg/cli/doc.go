// Package cli provides the command-line interface for grpcprobe.
//
// Commands:
//   - methods: List every method in the proto tree (--failures shows load defects)
//   - method: Show one method, its types and request fields
//   - example: Print a synthesized example request, response or message
//   - describe: Print the .proto definition of a type, service or method
//   - call: Perform a unary call against an environment
//   - envs: List the environment table
//   - overrides: Show the example override table
//   - sync: Pull the schema repository and reload
//   - config: Display effective configuration
//   - version: Show grpcprobe version
//
// Every command loads configuration first (flags > env > local file > global
// file > defaults). The proto tree is loaded only by commands that need it;
// files that fail to load are reported once on stderr and never abort the
// command.
//
// Usage:
//
//	grpcprobe methods
//	grpcprobe example GetProduct
//	grpcprobe call GetProduct --env qa -d '{product_variant_id: "pv-1"}'
//	grpcprobe call --json GetProduct --query '$.price'
//	grpcprobe sync --token "$GITHUB_TOKEN"
package cli
