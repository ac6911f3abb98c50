// Package notify declares the email collaborator. Delivery itself lives
// outside this service; the core only produces the events.
package notify

import "github.com/sirupsen/logrus"

// Mailer is the outbound notification surface the core depends on.
type Mailer interface {
	SendWelcome(to, username string)
	SendWalletReceipt(to, username string, amount, newBalance int64, txnID string)
	SendPurchaseReceipt(to, username, productName string, price, newBalance int64)
	SendPasswordReset(to, resetToken string)
	SendBroadcast(to, subject, message string)
}

// LogMailer logs every notification instead of delivering it. It is the
// default wiring and the test double.
type LogMailer struct{}

func (LogMailer) SendWelcome(to, username string) {
	logrus.WithFields(logrus.Fields{"to": to, "username": username}).Info("mail: welcome")
}

func (LogMailer) SendWalletReceipt(to, username string, amount, newBalance int64, txnID string) {
	logrus.WithFields(logrus.Fields{
		"to": to, "amount": amount, "new_balance": newBalance, "txn_id": txnID,
	}).Info("mail: wallet receipt")
}

func (LogMailer) SendPurchaseReceipt(to, username, productName string, price, newBalance int64) {
	logrus.WithFields(logrus.Fields{
		"to": to, "product": productName, "price": price, "new_balance": newBalance,
	}).Info("mail: purchase receipt")
}

func (LogMailer) SendPasswordReset(to, resetToken string) {
	logrus.WithFields(logrus.Fields{"to": to}).Info("mail: password reset")
}

func (LogMailer) SendBroadcast(to, subject, message string) {
	logrus.WithFields(logrus.Fields{"to": to, "subject": subject}).Info("mail: broadcast")
}
