// Package ir provides the closed value types shared by every contagion package.
//
// This package contains type definitions and canonical encoding only. All
// other internal packages import ir; ir imports nothing internal. This keeps
// State, Event and Cause the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - State and Event are closed enumerations; every switch over them is
//     exhaustive and unknown values are rejected at parse time
//   - Cause uses an explicit NoCause sentinel, never a pointer
//   - Canonical JSON has no floats, so digests are stable across platforms
//   - Ticks are logical; no wall-clock timestamps appear in any record
package ir
