// Package domain models change detection over environmental monitoring feeds.
//
// # Data Sources
//
// The sentinel watches five independently-polled upstream feeds. Each feed's
// raw records are fetched and cached by a separate collector layer; this
// system only sees the cached snapshots:
//
//	weather-alerts    NWS CAP alerts (severity strings: Extreme/Severe/Moderate/Minor)
//	stream-gauges     USGS NWIS gage height readings with NWS flood stages
//	discharge-permits EPA NPDES discharge permit issuances
//	flood-forecasts   NWS AHPS river forecasts (category: major/moderate/minor/action)
//	compliance        EPA ECHO enforcement actions with penalty amounts
//
// # Geographic Keys
//
// Events are correlated spatially by HUC8, the 8-digit USGS hydrologic unit
// code identifying a drainage sub-basin. The first four digits of a HUC8 are
// its parent HUC4 sub-region, the coarser tier used for the geographic
// correlation bonus. Records that carry no HUC8 still count globally but are
// excluded from per-basin scoring.
//
// State codes are two-letter USPS abbreviations. Sources that bury the state
// inside free text (e.g. a CAP sender name like "NWS Baltimore MD") get a
// best-effort regex extraction; misses are counted, not treated as errors.
//
// # Severity
//
// Every change event carries a four-level severity hint assigned by its
// adapter at emission time (critical/high/moderate/low). The mapping is
// per-source: CAP severity strings map directly, numeric feeds map by
// exceedance magnitude. Severity selects the event's base score in the
// scoring engine; it is a hint, not a verdict.
//
// # Event Identity
//
// Event IDs are "<source>-<upstream record id>-<unix seconds>". The upstream
// record ID is the de-duplication key inside one poll cycle; the timestamp
// suffix keeps IDs unique if the same upstream record re-enters the baseline
// after a reset. Re-appending the same adapter output is idempotent because
// the event ledger de-duplicates by ID.
package domain
