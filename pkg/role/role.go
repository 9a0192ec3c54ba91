package role

const (
	Human = "human"
	AI    = "ai"
)
