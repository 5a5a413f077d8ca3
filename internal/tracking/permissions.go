package tracking

import "context"

// Permissions asks the platform for location access. Implementations
// report denial as false, never as an error.
type Permissions interface {
	RequestForeground(ctx context.Context) bool
	RequestBackground(ctx context.Context) bool
}

// GrantedPermissions reports grants the device already resolved, as
// forwarded by the device bridge.
type GrantedPermissions struct {
	Foreground bool
	Background bool
}

func (p GrantedPermissions) RequestForeground(context.Context) bool { return p.Foreground }

func (p GrantedPermissions) RequestBackground(context.Context) bool { return p.Background }
