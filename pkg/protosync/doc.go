// Package protosync refreshes the local checkout that holds the proto tree.
//
// A Syncer pulls one branch of one remote into an existing clone using
// go-git, authenticating with an access token over HTTPS basic auth:
//
//	s := protosync.New("/src/catalog", protosync.WithBranch("main"))
//	res, err := s.Pull(ctx, token)
//	if err != nil {
//	    return err
//	}
//	if res.Updated {
//	    // reload the schema
//	}
//
// The token is only used for the transfer. It is never written to the
// repository configuration.
package protosync
