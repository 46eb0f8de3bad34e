package errors_test

import (
	stderrors "errors"
	"fmt"

	"github.com/quiverdata/quiver/pkg/errors"
)

// ExampleNew shows basic error creation with a type category.
func ExampleNew() {
	err := errors.New(errors.ErrorTypeSchema, `column "price" not found`)
	fmt.Println(err)
	// Output: schema: column "price" not found
}

// ExampleNewf shows error creation with a formatted message.
func ExampleNewf() {
	err := errors.Newf(errors.ErrorTypeArgument, "unknown aggregator %q", "medain")
	fmt.Println(err)
	// Output: argument: unknown aggregator "medain"
}

// ExampleWrap shows wrapping an underlying error with context.
func ExampleWrap() {
	cause := fmt.Errorf("unexpected EOF")
	err := errors.Wrap(cause, errors.ErrorTypeIO, "read trades.csv")
	fmt.Println(err)
	// Output: io: read trades.csv: unexpected EOF
}

// ExampleIsType shows type checks on wrapped errors. The check sees
// through plain fmt.Errorf wrappers, and a bare error has no type.
func ExampleIsType() {
	cause := fmt.Errorf("permission denied")
	err := errors.Wrap(cause, errors.ErrorTypeIO, "open /data/trades.csv")
	wrapped := fmt.Errorf("loading dataset: %w", err)

	fmt.Println(errors.IsType(err, errors.ErrorTypeIO))
	fmt.Println(errors.IsType(err, errors.ErrorTypeSchema))
	fmt.Println(errors.IsType(wrapped, errors.ErrorTypeIO))
	fmt.Println(errors.IsType(cause, errors.ErrorTypeIO))
	// Output:
	// true
	// false
	// true
	// false
}

// ExampleError_Unwrap shows that wrapped errors stay visible to the
// standard library's errors.Is.
func ExampleError_Unwrap() {
	cause := stderrors.New("disk full")
	err := errors.Wrap(cause, errors.ErrorTypeIO, "write summary.parquet")

	fmt.Println(stderrors.Is(err, cause))
	fmt.Println(err.Unwrap() == cause)
	// Output:
	// true
	// true
}

// Example_withDetails shows attaching structured context to an error.
// Details ride along for logging and reporting without changing the
// error string.
func Example_withDetails() {
	err := errors.New(errors.ErrorTypeData, "row width does not match header").
		WithDetail("row", 1042).
		WithDetail("want", 6).
		WithDetail("got", 5)

	fmt.Println(err)
	fmt.Printf("row=%v want=%v got=%v\n",
		err.Details["row"], err.Details["want"], err.Details["got"])
	// Output:
	// data: row width does not match header
	// row=1042 want=6 got=5
}

// Example_errorChain shows how context accumulates as an error climbs
// from a predicate parser through a pipeline step to the job runner.
func Example_errorChain() {
	parseErr := errors.New(errors.ErrorTypeQuery, `unexpected token ")" at offset 12`)
	stepErr := errors.Wrap(parseErr, errors.ErrorTypeArgument, `step "filter" rejected its predicate`)
	runErr := errors.Wrap(stepErr, errors.ErrorTypeInternal, `job "daily-volume" failed`)

	fmt.Println(runErr)
	// Output: internal: job "daily-volume" failed: argument: step "filter" rejected its predicate: query: unexpected token ")" at offset 12
}

// Example_errorHandling shows dispatching on error category at a call
// site that has to decide what the caller should do next.
func Example_errorHandling() {
	describe := func(err error) string {
		switch {
		case errors.IsSchema(err):
			return "fix the column list"
		case errors.IsArgument(err):
			return "fix the call site"
		case errors.IsData(err):
			return "inspect the input file"
		default:
			return "report a bug"
		}
	}

	fmt.Println(describe(errors.New(errors.ErrorTypeSchema, `unknown column "prce"`)))
	fmt.Println(describe(errors.New(errors.ErrorTypeArgument, "join requires at least one key")))
	fmt.Println(describe(errors.New(errors.ErrorTypeData, "row 7 has 3 fields, header has 5")))
	fmt.Println(describe(errors.New(errors.ErrorTypeInternal, "storage invariant violated")))
	// Output:
	// fix the column list
	// fix the call site
	// inspect the input file
	// report a bug
}
