package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `feedsync merges a remote activity feed, the device call log and the SMS/MMS log into one timeline.

Workflow:
1) refresh_timeline pulls new remote activities. The very first refresh also imports recent device history.
2) load_older extends the timeline into the past, one bounded page at a time. Call it again to go further back.
3) device_changed imports new device entries after a call or message (log: calllog or messagelog).
4) list_timeline reads the merged result, newest first.
5) get_sync_status shows what is running and how far each source has been synced.

Sync tools wait for the result by default. Pass no_wait=true to return immediately with status "pending".

Docs:
- feedsync://docs/overview
- feedsync://docs/statuses
`

type docResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	Content     string
}

var docResources = []docResource{
	{
		URI:         "feedsync://docs/overview",
		Name:        "docs_overview",
		Title:       "feedsync overview",
		Description: "Sources, watermarks and how the sync operations move through them.",
		Content: `# feedsync overview

## Sources

| source | origin |
|---|---|
| remote_status | remote activity feed |
| call | device call log |
| sms | device SMS log |
| mms | device MMS log |

Every record has a millisecond timestamp, a title (short local date) and a description.

## Watermarks

Each source keeps an (oldest, newest) pair of timestamps already captured.
Newest never moves backwards and oldest never moves forwards.

- A refresh asks the remote feed for activities updated after newest.
- load_older asks for activities in the window before oldest, then reads the
  next older pages of the call log and message log.
- Device logs are read in small pages, at most ten pages per step, so a large
  log is imported over several steps without blocking other requests.

## Duplicates

Remote activities already stored (same activity id) are skipped, so repeating
a refresh never duplicates records.
`,
	},
	{
		URI:         "feedsync://docs/statuses",
		Name:        "docs_statuses",
		Title:       "feedsync result statuses",
		Description: "Meaning of every status a sync tool can return.",
		Content: `# Result statuses

- success: the operation finished; nothing new came from the device logs.
- updated_from_device: the operation finished and imported device entries.
- no_connectivity: the remote service is unreachable. Nothing was changed.
- not_ready: prerequisite syncs are incomplete. The refresh is retried automatically.
- comms_timeout: the remote service did not answer in time.
- server_error: the remote service returned an error or an unreadable response.
- internal_error: a storage or device read failure, or the operation was cancelled.
- pending: the tool returned before the operation finished (no_wait or timeout).
`,
	},
}

func registerDocResources(server *sdkmcp.Server) {
	for _, doc := range docResources {
		server.AddResource(&sdkmcp.Resource{
			URI:         doc.URI,
			Name:        doc.Name,
			Title:       doc.Title,
			Description: doc.Description,
			MIMEType:    "text/markdown",
			Size:        int64(len(doc.Content)),
		}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: "text/markdown",
					Text:     doc.Content,
				}},
			}, nil
		})
	}
}
