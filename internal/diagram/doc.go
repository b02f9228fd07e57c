// Package diagram renders a finalized connection graph as a C4-PlantUML
// container diagram.
//
// Output order is fixed: header, unboxed bucket-0 systems, one
// System_Boundary block per project in discovery order, relations grouped
// by the origin's project (bucket 0 first), footer. The same graph always
// renders to the same bytes.
package diagram
