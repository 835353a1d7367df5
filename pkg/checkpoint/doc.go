// Package checkpoint persists fetched chunks so an interrupted export can
// resume without re-downloading completed work.
//
// Each chunk of a layer export is written once, atomically, to a file whose
// name is derived from the chunk index alone. On a later run, a checkpoint
// that exists and parses counts as done; one that fails to parse is treated
// as absent and re-fetched, so corrupt files self-heal. Checkpoints are
// deleted only after the final artifact has been merged successfully.
package checkpoint
