// Package domain models simulated environmental noise telemetry for urban
// monitoring points.
//
// # Noise Model
//
// Every sensor belongs to a land-use region type that fixes its expected noise
// band: a base level and a [min, max] range in dB(A).
//
//	residential  45 dB  [35, 60]
//	commercial   55 dB  [45, 70]
//	industrial   65 dB  [55, 80]
//	arterial     70 dB  [60, 85]   traffic trunk roads
//	education    40 dB  [30, 55]   schools, campuses
//	mixed        50 dB  [40, 65]
//	(unknown)    50 dB  [40, 70]
//
// Diurnal profile:
//
//	The local hour selects a day segment, and the segment scales the base level:
//	morning [06,08) x1.2 | day [08,18) x1.0 | evening [18,22) x1.1 | night [22,06) x0.7
//	A candidate baseline is base*coefficient + U(-5,5), clamped into the band.
//
// Smoothing:
//
//	A new value may only move so far from the sensor's previous value:
//	  gap < 60s      |delta| <= gap/60 * 5 dB
//	  60s..300s      |delta| <= 10 dB
//	  otherwise      unconstrained
//	The result is jittered by U(-2,2) and clamped into [min-5, max+5].
//	Sensors that are not online skip the model and report U(0,30) with
//	quality "invalid".
//
// # Threshold Evaluation
//
// Monitoring points carry a day and a night limit. The day window is local
// hours [06,22); everything else uses the night limit. A reading exceeds when
// its value is strictly above the applicable limit, and the overage maps to a
// severity tier:
//
//	overage <= 5 low | <= 10 medium | <= 15 high | > 15 critical
//
// Exceedance is never stored on a Reading. It is recomputed from the point's
// current limits and the reading's own timestamp each time it is needed.
package domain
