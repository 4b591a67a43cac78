package usage

// Usage represents a user's analysis-run consumption snapshot.
type Usage struct {
	Used  int `json:"used"`
	Limit int `json:"limit"`
}

const defaultLimit = 50

func defaultUsage() Usage {
	return Usage{Used: 0, Limit: defaultLimit}
}
