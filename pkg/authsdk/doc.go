/*
Package authsdk holds the wire types and error envelope of the quill auth
API, plus a small Go client for it.

The client keeps the session cookies the server sets (access_token and
refresh_token) and replays them on later calls, the way a browser would:

	c := authsdk.NewClient("https://quill.example.com")

	resp, err := c.LoginV2(ctx, authsdk.LoginRequest{Email: email, Password: pw})
	if err != nil {
		return err
	}
	if resp.MFARequired {
		resp, err = c.MFAVerify(ctx, authsdk.MFAVerifyRequest{
			MFAToken: resp.MFAToken,
			Method:   authsdk.MFAMethodTOTP,
			Code:     code,
		})
	}

	who, err := c.Verify(ctx)

Errors returned by the server are *APIError values carrying the HTTP status
and one of the ErrorCode constants; IsCode tests for a specific code.
*/
package authsdk
