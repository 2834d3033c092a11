// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// NewAddContactTool creates the kokoro_add_contact tool definition
func NewAddContactTool() mcp.Tool {
	return mcp.NewTool("kokoro_add_contact",
		mcp.WithDescription("Register two principals as mutual contacts. Only mutual contacts can produce synchronization diary entries."),
		mcp.WithString("principal_a",
			mcp.Required(),
			mcp.Description("First principal"),
		),
		mcp.WithString("principal_b",
			mcp.Required(),
			mcp.Description("Second principal"),
		),
	)
}

// AddContactHandler handles the kokoro_add_contact tool
func AddContactHandler(ctx *ToolContext) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(c context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		a := request.GetString("principal_a", "")
		b := request.GetString("principal_b", "")
		if a == "" || b == "" {
			return mcp.NewToolResultError("principal_a and principal_b are required"), nil
		}

		if err := ctx.Contacts.Add(a, b); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to add contact: %v", err)), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf("'%s' and '%s' are now mutual contacts.", a, b)), nil
	}
}
