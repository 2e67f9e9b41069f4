// Package all wires every built-in warehouse backend into the factory.
//
// It exists purely for side effects: importing it (usually as a blank
// import in the wiring layer) runs each backend's init function, which
// registers its factory with the warehouse package. After the import,
// warehouse.New accepts the kinds "redshift", "postgres", and "sqlite".
package all

import (
	_ "sparkify/internal/warehouse/redshift"
	_ "sparkify/internal/warehouse/sqlite"
)
