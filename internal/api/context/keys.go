package context

type Key string

const (
	Claims   Key = "claims"
	Bearer   Key = "bearer"
	Tenant   Key = "tenant"
	Params   Key = "params"
	ViewAs   Key = "view_as"
	Gate     Key = "gate"
)
