// Package wshandler serves the persistent admin channel over WebSocket.
//
// A client connects, authenticates with the certificate handshake and then
// sends ACTION frames that are dispatched to the resource router:
//
//	-> {"messageType":"AUTHENTICATION_REQUEST"}
//	<- {"messageType":"AUTHENTICATION_RESULT","data":{"status":"OK","data":<server hello>}}
//	-> {"messageType":"AUTHENTICATION_DATA","data":{"clientHello":{...},"signature":"..."}}
//	<- {"messageType":"AUTHENTICATION_RESULT","data":{"status":"OK"}}
//	-> {"messageType":"ACTION","resourcePath":["serverAdmins"],"method":"GET","requestId":"1"}
//	<- {"messageType":"ACTION_RESULT","resourcePath":["serverAdmins"],"method":"GET","requestId":"1","data":{"status":"OK","data":["..."]}}
//
// Resource events published on the hub arrive as RESOURCE_EVENT frames.
// Malformed frames are answered with a BAD_REQUEST ACTION_RESULT and the
// connection stays open.
package wshandler
