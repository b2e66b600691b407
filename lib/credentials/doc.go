// Package credentials keeps a short lived authentication token fresh.
//
// A Manager generates a token when it is created and regenerates it in the
// background on a fixed interval, well before the previous token expires.
// Readers always get the last successfully generated token; a failed refresh
// is logged and retried on the next tick.
//
// The IAMTokenGenerator produces ElastiCache and MemoryDB IAM auth tokens:
// a SigV4 presigned "connect" request for the cluster and user, valid for
// fifteen minutes, with the scheme stripped off.
//
// Usage:
//
//	gen, err := credentials.NewIAMTokenGenerator(credentials.IAMConfig{
//	    ClusterName: "my-cluster",
//	    Username:    "app",
//	    Region:      "us-east-1",
//	    Service:     credentials.ElastiCache,
//	}, nil)
//	mgr, err := credentials.NewManager(ctx, gen)
//	mgr.Start()
//	defer mgr.Stop(ctx)
//	password := mgr.Token()
package credentials
