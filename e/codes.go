package e

// Constants in here define error codes that are unique to a package/function.
// The first two characters define the package, within this repo, and the
// second two characters define the file within that package. Each file then
// declares its own ECode constants by appending a two character id.
//
// Valid values for the characters are: 0-9 and A-Z.

const (
	// package: migration
	Code0001 = "0001" // package:migration | migration/runner.go
	Code0002 = "0002" // package:migration | migration/list.go
	Code0003 = "0003" // package:migration/sqlmodel | migration/sqlmodel/run.go
	Code0004 = "0004" // package:migration | migration/plan.go
	Code0005 = "0005" // package:migration | migration/tracker.go

	// package: sql
	Code0201 = "0201" // package:sql | sql/sql.go
	Code0202 = "0202" // package:sql | sql/query.go
	Code0203 = "0203" // package:sql | sql/dialect.go
	Code0204 = "0204" // package:sql | sql/credentials.go
	Code0205 = "0205" // package:sql | sql/foreign_keys.go
	Code0206 = "0206" // package:sql | sql/txn.go

	// package: executor
	Code0401 = "0401" // package:executor | executor/executor.go

	// package: report
	Code0501 = "0501" // package:report | report/kafka.go

	// package: verify
	Code0601 = "0601" // package:verify | verify/verify.go
	Code0602 = "0602" // package:verify | verify/probe.go

	// package: http
	Code0701 = "0701" // package:http | http/run.go

	// package: kafka
	Code0800 = "0800" // package:kafka | kafka/connection.go
	Code0801 = "0801" // package:kafka/msk | kafka/msk/sasl.go

	// package: config
	Code0901 = "0901" // package:config | config/config.go
)
