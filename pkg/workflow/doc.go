// Package workflow models workflow-definition documents and derives the
// searchable metadata stored for each one.
//
// A Document is the typed form of one JSON file. The Analyzer turns it into a
// Record: node count, complexity bucket, trigger class, integration set and a
// generated description. All derived fields are pure functions of the node
// list, so reanalysing unchanged bytes always produces the same Record (apart
// from AnalyzedAt).
//
// Example:
//
//	analyzer := workflow.NewAnalyzer()
//	rec, err := analyzer.Analyze("workflows/0001_Slack_Alerts.json")
//	if err != nil {
//	    // indexerr.KindIO or indexerr.KindParse
//	}
//	fmt.Println(rec.Description)
//	// Webhook workflow integrating Slack with 4 nodes (Low complexity)
package workflow
