// Package usersync keeps users and teams consistent across a set of
// independent applications that share one account protocol.
//
// Publishing:
//   - PublishService turns a local change (create user, sync fields, sync
//     password, create team, toggle active) into a SyncJob and places it on a
//     queue.Queue. Passwords are bcrypt hashed before they leave the process
//     and hashes are never hashed twice.
//   - Dispatcher runs a job against the active apps of the AppRegistry, one
//     HTTP call per app through the DeliveryClient. Non 2xx answers are
//     recorded and reported as EventSyncFailed, transport errors are returned
//     as retryable so the queue tries the job again.
//   - ChangeObserver plugs into Users.OnUpdate and publishes the allow-listed
//     fields that changed. Writes made while serving an inbound request carry
//     a receiving context and are not echoed back.
//
// Receiving:
//   - The receiver package mounts the sync endpoints on a fiber router
//     behind a bearer key check. Payloads are validated with
//     ozzo-validation and applied through the RepositoryManager stores,
//     password hashes are stored verbatim.
//
// Audit:
//   - SyncLogger appends one SyncLog row per delivery attempt and per
//     accepted inbound request. Credential fields are stripped from the
//     stored payload. Rows are only removed by retention pruning.
package usersync
