// Package assemble turns computed values back into tagged documents. An
// Assembler subscribes to the tail of a value pipeline, discovers the
// upstream sources through a lineage walk, and wraps each incoming value
// tuple in a well-formed run: RunStart and Descriptor on the first value,
// one Record per value, and a RunStop when the upstream run closes or a
// computation fails. When the principal sources' run identity changes
// mid-run, the assembler resynchronizes by closing the current derived run
// and opening a fresh one before the next Record.
package assemble
