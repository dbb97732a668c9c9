// Package radar models near-real-time weather-radar reflectivity samples.
//
// # Points
//
// A [RadarPoint] is one reflectivity sample at a latitude/longitude pair,
// measured in dBZ (decibels relative to Z). Values below roughly 10 dBZ carry
// no precipitation; the domain-meaningful range is about 0 to 70 dBZ.
//
// Precipitation category and display color are never stored independently of
// the reflectivity value. Both are derived by a classification [Policy] when
// the point is built through [NewPoint], so a point always agrees with the
// policy that produced it.
//
// # Classification policies
//
// Two breakpoint tables are in use and are kept as distinct named policies:
//
//	FiveBand (decoded grids, viewer products, regional synthetic systems):
//	  <10 none #ffffff | <20 light #00ff00 | <30 moderate #ffff00
//	  <40 heavy #ff8000 | <50 extreme #ff0000 | >=50 extreme #800080
//
//	ThreeBand (station-derived estimates, per-station synthetic patterns):
//	  <20 light | <35 moderate | >=35 heavy
//	  colors: <20 #00ff00 | <35 #ffff00 | <45 #ff8000 | >=45 #ff0000
//
// Lower bounds are inclusive and upper bounds exclusive.
//
// # Coverage
//
// Only points inside the continental bounding box [CONUS] (24..49 N,
// 125..66 W) leave the acquisition pipeline. Sources that report longitudes in
// the 0..360 convention are normalized with [NormalizeLongitude] first.
//
// # Snapshots
//
// A [Snapshot] is one immutable, timestamped batch of points produced by a
// single fetch cycle. The timestamp is the fetch time shared by every point in
// the batch, not a per-point sensor time.
package radar
