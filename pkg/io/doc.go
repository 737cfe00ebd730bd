// Package io provides JSON import and export of extracted effect rows.
//
// # Overview
//
// Extraction fits one model per subgroup level and is the slow part of the
// pipeline. Exporting its rows lets a plot be re-rendered with different
// table or layout settings without touching the patient data again, and
// lets rows produced by other tools be plotted.
//
// # JSON Format
//
//	{
//	  "version": 1,
//	  "rows": [
//	    {
//	      "biomarker": "BMRKR1", "biomarker_label": "Biomarker 1",
//	      "label": "All patients", "row_type": "content",
//	      "outcome": "response", "n_tot": 200, "n_event": 80,
//	      "prop": 0.4, "est": 1.8, "lcl": 1.1, "ucl": 2.9,
//	      "conf_level": 0.95, "pval": 0.021, "status": "ok"
//	    }
//	  ]
//	}
//
// Missing statistics are encoded as null. A bare array of rows is accepted
// on import as well.
//
// # Validation
//
// [ReadRows] checks every row with [effect.Row.Validate]: counts, the
// interval containing the estimate, and proportions and p-values in
// [0, 1]. The error names the offending row.
package io
