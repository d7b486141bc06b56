package main

// Flag structs decouple cobra from the handler logic, for testability,
// matching the teacher's cmd/provisr convention.

type RunFlags struct {
	ConfigPath    string
	ControlAddr   string
	MetricsListen string
	HistoryDSN    string
	LogDir        string
	OptionsPath   string
}

type ControlFlags struct {
	Addr  string
	Job   string
	Index int
}
